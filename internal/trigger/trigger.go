// Package trigger decides whether an edited file warrants a verification
// pass. Path patterns cover the common UI layers; plain code files are
// additionally sniffed for terminal UI library imports.
package trigger

import (
	"fmt"
	"net"
	"os"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/quenby/glimpse/internal/task"
)

// Category classifies the UI layer a file belongs to.
type Category string

const (
	CategoryWebapp  Category = "webapp"
	CategoryStyles  Category = "styles"
	CategoryGUI     Category = "gui"
	CategoryTUI     Category = "tui"
	CategoryUnknown Category = "unknown"
)

// categoryPatterns is checked in order; the first match wins.
var categoryPatterns = []struct {
	category Category
	patterns []string
}{
	{CategoryWebapp, []string{
		"**/*.tsx",
		"**/*.jsx",
		"**/*.vue",
		"**/*.svelte",
		"**/*.astro",
		"**/pages/**/*.tsx",
		"**/pages/**/*.jsx",
		"**/pages/**/*.vue",
		"**/app/**/*.tsx",
		"**/app/**/*.jsx",
		"**/components/**/*.tsx",
		"**/components/**/*.jsx",
		"**/components/**/*.vue",
		"**/components/**/*.svelte",
	}},
	{CategoryStyles, []string{
		"**/*.css",
		"**/*.scss",
		"**/*.sass",
		"**/*.less",
		"**/*.styled.ts",
		"**/*.styled.tsx",
		"**/*.styles.ts",
		"**/*.styles.tsx",
		"**/tailwind.config.*",
		"**/theme/**/*",
		"**/themes/**/*",
	}},
	{CategoryGUI, []string{
		"**/*.xaml",
		"**/*.axaml",
		"**/*.fxml",
		"**/*.ui",
		"**/*.qml",
		"**/*.glade",
		"**/*.Designer.cs",
		"**/renderer/**/*.ts",
		"**/renderer/**/*.tsx",
	}},
	{CategoryTUI, []string{
		"**/cli/**/*.py",
		"**/cli/**/*.ts",
		"**/cli/**/*.js",
		"**/tui/**/*.py",
		"**/tui/**/*.ts",
		"**/tui/**/*.js",
		"**/*_cli.py",
		"**/*_tui.py",
		"**/*_cli.ts",
		"**/*_tui.ts",
		"**/cli.py",
		"**/tui.py",
	}},
}

// tuiImports flags terminal UI libraries in otherwise unremarkable code
// files.
var tuiImports = []*regexp.Regexp{
	regexp.MustCompile(`import\s+curses`),
	regexp.MustCompile(`from\s+curses\s+import`),
	regexp.MustCompile(`import\s+blessed`),
	regexp.MustCompile(`from\s+blessed\s+import`),
	regexp.MustCompile(`import\s+\{[^}]*\}\s+from\s+['"]ink['"]`),
	regexp.MustCompile(`require\(['"]ink['"]\)`),
	regexp.MustCompile(`import\s+rich`),
	regexp.MustCompile(`from\s+rich\s+import`),
	regexp.MustCompile(`import\s+textual`),
	regexp.MustCompile(`from\s+textual\s+import`),
	regexp.MustCompile(`import\s+prompt_toolkit`),
	regexp.MustCompile(`from\s+prompt_toolkit\s+import`),
}

// codeExtensions bound the content sniff to files worth reading.
var codeExtensions = map[string]bool{
	".py": true, ".ts": true, ".tsx": true, ".js": true, ".jsx": true,
}

var globRegexps = map[string]*regexp.Regexp{}

func init() {
	for _, group := range categoryPatterns {
		for _, p := range group.patterns {
			if strings.Contains(p, "**") {
				globRegexps[p] = compileGlob(p)
			}
		}
	}
}

// Detection explains a trigger decision.
type Detection struct {
	ShouldVerify bool     `json:"should_verify"`
	Category     Category `json:"category"`
	Pattern      string   `json:"matched_pattern,omitempty"`
	Confidence   float64  `json:"confidence"`
	Reason       string   `json:"reason"`
}

// Detect reports whether an edit to the file should trigger verification.
func Detect(file string) Detection {
	return detect(file, true)
}

// DetectPath is Detect without the content sniff, for callers that only
// have a path.
func DetectPath(file string) Detection {
	return detect(file, false)
}

func detect(file string, sniff bool) Detection {
	normalized := normalize(file)

	for _, group := range categoryPatterns {
		for _, pattern := range group.patterns {
			if MatchPattern(normalized, pattern) {
				return Detection{
					ShouldVerify: true,
					Category:     group.category,
					Pattern:      pattern,
					Confidence:   1,
					Reason:       fmt.Sprintf("file matches %s pattern %s", group.category, pattern),
				}
			}
		}
	}

	if sniff && codeExtensions[strings.ToLower(path.Ext(normalized))] && hasTUIImports(file) {
		return Detection{
			ShouldVerify: true,
			Category:     CategoryTUI,
			Pattern:      "content:tui-import",
			Confidence:   0.9,
			Reason:       "file imports a terminal UI library",
		}
	}

	return Detection{Category: CategoryUnknown, Reason: "file matches no UI pattern"}
}

// AppTypeFor maps a file to the application kind a verification run should
// assume. Styles render through the web app; anything unrecognized defaults
// to webapp as the most common case.
func AppTypeFor(file string) task.AppType {
	switch Detect(file).Category {
	case CategoryGUI:
		return task.AppGUI
	case CategoryTUI:
		return task.AppTUI
	default:
		return task.AppWebapp
	}
}

// MatchPattern matches a slash-normalized path against a glob pattern.
// Patterns containing ** match across directory separators,
// case-insensitively; plain globs fall back to path.Match.
func MatchPattern(file, pattern string) bool {
	file = normalize(file)
	pattern = normalize(pattern)

	if re, ok := globRegexps[pattern]; ok {
		return re.MatchString(file)
	}
	if strings.Contains(pattern, "**") {
		return compileGlob(pattern).MatchString(file)
	}
	ok, err := path.Match(strings.ToLower(pattern), strings.ToLower(file))
	return err == nil && ok
}

func compileGlob(pattern string) *regexp.Regexp {
	escaped := strings.ReplaceAll(pattern, ".", `\.`)
	escaped = strings.ReplaceAll(escaped, "**", "\x00")
	escaped = strings.ReplaceAll(escaped, "*", "[^/]*")
	escaped = strings.ReplaceAll(escaped, "\x00", ".*")
	return regexp.MustCompile("(?i)^.*" + escaped + "$")
}

func normalize(file string) string {
	return strings.ReplaceAll(file, "\\", "/")
}

func hasTUIImports(file string) bool {
	content, err := os.ReadFile(file)
	if err != nil {
		return false
	}
	for _, re := range tuiImports {
		if re.Match(content) {
			return true
		}
	}
	return false
}

// devServerPorts are tried in order when no port is given.
var devServerPorts = []int{3000, 3001, 5173, 5174, 8080, 8000, 4200, 4000}

// DetectDevServer checks localhost for a listening development server and
// returns its URL. Empty ports means the common defaults.
func DetectDevServer(ports []int) (string, bool) {
	if len(ports) == 0 {
		ports = devServerPorts
	}
	for _, port := range ports {
		addr := fmt.Sprintf("localhost:%d", port)
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err != nil {
			continue
		}
		conn.Close()
		return "http://" + addr, true
	}
	return "", false
}
