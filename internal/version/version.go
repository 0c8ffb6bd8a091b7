// 包 version：构建期注入的版本标识
package version

// 构建时经 -ldflags "-X snap-api/internal/version.Version=v1.2.3 -X snap-api/internal/version.Commit=abcdef" 注入
var (
	Version = "dev"
	Commit  = ""
)
