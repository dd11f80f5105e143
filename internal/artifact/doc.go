// Package artifact manages the per-mode configuration artifacts and the
// single installed artifact slot the managed service reads at startup.
//
// A Store holds at most one artifact per mode. Artifacts enter the store in
// three ways:
//
//   - captured: the installed artifact is copied as-is, normally the
//     factory artifact found before any switching happened (the backup);
//   - authored: read on demand from a pre-authored file configured for the
//     mode;
//   - synthesized: derived from the factory artifact by a pure Transform,
//     such as prefixing a mode marker line.
//
// Captured and synthesized artifacts are persisted under the artifact
// directory as <mode>.artifact, with their metadata in manifest.yaml, so a
// restart does not need to redo the work. Once stored, an entry is only
// replaced by an explicit Resynthesize.
//
// Lookups prefer a captured artifact, then an authored file, then a
// synthesized one.
package artifact
