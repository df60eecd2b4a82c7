package types

// Version is the canonical project version.
// The CLI, the line protocol, and the manifest format share this version.
const Version = "0.3.0"

// ManifestVersion is the page manifest schema version written with every
// persisted PageReport.
const ManifestVersion = "1"
