package vectorserver

// Version is overridden at build time with -ldflags "-X github.com/a-h/vectorserver.Version=...".
var Version = "dev"
