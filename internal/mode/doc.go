// Package mode defines the closed set of service modes and classifies an
// installed configuration artifact into one of them.
//
// Classification is a case-insensitive substring search over an ordered
// token list. Non-factory modes are checked in configuration order and the
// first one with a matching token wins; an artifact with no token at all is
// the factory mode. An artifact carrying tokens for several modes therefore
// always resolves to the earliest configured one.
//
// A detector never returns an error. An artifact that cannot be read is
// reported as Unknown, which is an observation rather than a mode.
package mode
