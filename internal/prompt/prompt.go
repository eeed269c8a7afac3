package prompt

import (
	"os"
	"os/user"
	"strings"

	"github.com/fatih/color"
)

const Default = `\u@\h:\w\$ `

var (
	colorUserHost = color.New(color.FgGreen, color.Bold)
	colorDir      = color.New(color.FgBlue, color.Bold)
)

// Info holds the values the prompt escapes expand to.
type Info struct {
	User string
	Host string
	Dir  string
	Home string
	Root bool
}

// Current gathers Info for the running process, falling back to
// placeholders for anything that cannot be looked up.
func Current() Info {
	info := Info{User: "username", Host: "hostname", Dir: "~"}
	info.Home, _ = os.LookupEnv("HOME")

	if curUser, err := user.Current(); err == nil {
		info.User = curUser.Username
		info.Root = curUser.Uid == "0"
	}

	if curHostName, err := os.Hostname(); err == nil {
		info.Host = curHostName
	}

	if curCwd, err := os.Getwd(); err == nil {
		info.Dir = curCwd
	}

	return info
}

// Render expands \u, \h, \w and \$ in template.
func Render(template string, info Info) string {
	if template == "" {
		template = Default
	}

	host, _, _ := strings.Cut(info.Host, ".")

	sign := "$"
	if info.Root {
		sign = "#"
	}

	return strings.NewReplacer(
		`\u`, colorUserHost.Sprint(info.User),
		`\h`, colorUserHost.Sprint(host),
		`\w`, colorDir.Sprint(shorten(info.Dir, info.Home)),
		`\$`, sign,
	).Replace(template)
}

// shorten replaces a leading home directory with ~.
func shorten(dir, home string) string {
	switch {
	case home == "" || home == "/":
		return dir
	case dir == home:
		return "~"
	case strings.HasPrefix(dir, home+"/"):
		return "~" + strings.TrimPrefix(dir, home)
	}
	return dir
}
