package ir

// Version is the procflow release, reported by `procflow --version`.
const Version = "0.1.0"
