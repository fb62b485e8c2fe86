package version

// Version is the current release of the aegis CLI & client library.
const Version = "0.1.0"
