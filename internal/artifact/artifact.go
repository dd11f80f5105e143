package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"modeswitch/internal/mode"
)

// Origin records how an artifact entered the store.
type Origin string

const (
	OriginCaptured    Origin = "captured"
	OriginAuthored    Origin = "authored"
	OriginSynthesized Origin = "synthesized"
)

// Artifact is an immutable configuration blob for one mode.
type Artifact struct {
	Mode       mode.Mode
	SourcePath string // empty when synthesized
	Executable bool
	Origin     Origin
	Digest     string
	CreatedAt  time.Time

	content []byte
}

// New returns an artifact owning a private copy of content.
func New(m mode.Mode, content []byte, sourcePath string, executable bool, origin Origin, createdAt time.Time) Artifact {
	c := append([]byte(nil), content...)
	return Artifact{
		Mode:       m,
		SourcePath: sourcePath,
		Executable: executable,
		Origin:     origin,
		Digest:     Digest(c),
		CreatedAt:  createdAt,
		content:    c,
	}
}

// Content returns a copy of the artifact content.
func (a Artifact) Content() []byte {
	return append([]byte(nil), a.content...)
}

// Size returns the content length in bytes.
func (a Artifact) Size() int {
	return len(a.content)
}

// IsZero reports whether a is the zero Artifact.
func (a Artifact) IsZero() bool {
	return a.Mode == "" && a.content == nil
}

// Digest returns the hex sha256 of content.
func Digest(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
