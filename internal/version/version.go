// 包 version：构建信息，由链接参数注入
package version

// Commit：构建时通过 -ldflags "-X elevation-api/internal/version.Commit=..." 注入
var Commit = "dev"
