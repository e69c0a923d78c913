package version

// Commit 构建时通过 -ldflags "-X travel-geo/internal/version.Commit=<sha>" 注入
var Commit = "dev"
