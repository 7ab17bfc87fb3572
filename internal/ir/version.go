package ir

// EngineVersion is the courseswap release, reported by the CLI and on
// exported spans.
const EngineVersion = "0.1.0"
