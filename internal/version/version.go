package version

// Version is the minerva release version.
const Version = "0.1.0"
