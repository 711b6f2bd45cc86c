package internal

// Version is stamped at build time via -ldflags "-X roomchat/internal.Version=...".
var Version = "dev"
