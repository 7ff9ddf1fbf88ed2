// 版本信息，BuildTime/GitCommit 在构建时通过 -ldflags 注入
package version

import (
	"fmt"
	"runtime"
)

var (
	Version   = "0.3.0" // 版本号 -- 发布时候更新版本号
	BuildTime string
	GitCommit string
	GoVersion = runtime.Version()
)

// Info 版本信息
type Info struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time,omitempty"`
	GitCommit string `json:"git_commit,omitempty"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func GetVersion() string {
	return Version
}

// Get 返回完整版本信息
func Get() Info {
	return Info{
		Version:   Version,
		BuildTime: BuildTime,
		GitCommit: GitCommit,
		GoVersion: GoVersion,
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

// GetUserAgent 前端请求后端时使用的 User-Agent
func GetUserAgent() string {
	return "lss-cli/" + Version
}
