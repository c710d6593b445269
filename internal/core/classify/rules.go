package classify

import "regexp"

// Category はルールが除外する対象の種類
type Category string

const (
	CategoryDependency Category = "dependency"
	CategoryBuild      Category = "build-output"
	CategoryAssets     Category = "assets"
	CategoryTests      Category = "tests"
	CategoryDocs       Category = "docs"
	CategoryExamples   Category = "examples"
	CategoryVirtualEnv Category = "virtualenv"
	CategoryConfig     Category = "config"
	CategoryLockfile   Category = "lockfile"
	CategoryProjectDoc Category = "project-doc"
	CategoryOSMetadata Category = "os-metadata"
	CategoryLog        Category = "log"
	CategoryMinified   Category = "minified"
	CategoryMedia      Category = "media"
	CategoryData       Category = "serialization"
	CategoryBinary     Category = "binary"
)

// Rule は大文字小文字を区別しないパターンとその分類
type Rule struct {
	Pattern  *regexp.Regexp
	Category Category
}

func rule(expr string, category Category) Rule {
	return Rule{Pattern: regexp.MustCompile("(?i)" + expr), Category: category}
}

// DirectoryRules はディレクトリパスに対する部分一致ルール
// パスのどこかに現れれば配下ごと走査しない
var DirectoryRules = []Rule{
	rule(`node_modules`, CategoryDependency),
	rule(`virtualenvs`, CategoryVirtualEnv),
	rule(`dist`, CategoryBuild),
	rule(`build`, CategoryBuild),
	rule(`target`, CategoryBuild),
	rule(`bin`, CategoryBuild),
	rule(`public`, CategoryAssets),
	rule(`static`, CategoryAssets),
	rule(`tests?`, CategoryTests),
	rule(`docs?`, CategoryDocs),
	rule(`examples?`, CategoryExamples),
	rule(`myenv?`, CategoryVirtualEnv),
	rule(`__pycache__`, CategoryDependency),
	rule(`(^|/)vendor(/|$)`, CategoryDependency),
	rule(`(^|/)\.?venv(/|$)`, CategoryVirtualEnv),
}

// FileRules はファイルパスに対する除外パターン（末尾一致が中心）
var FileRules = []Rule{
	rule(`\.env$`, CategoryConfig),
	rule(`\.prettierrc$`, CategoryConfig),
	rule(`\.eslintrc$`, CategoryConfig),
	rule(`tsconfig\.json$`, CategoryConfig),
	rule(`package\.json$`, CategoryConfig),
	rule(`\.gitignore$`, CategoryConfig),
	rule(`yarn\.lock$`, CategoryLockfile),
	rule(`package-lock\.json$`, CategoryLockfile),
	rule(`(^|/)license(\.[a-z]+)?$`, CategoryProjectDoc),
	rule(`(^|/)changelog\.md$`, CategoryProjectDoc),
	rule(`(^|/)contributing\.md$`, CategoryProjectDoc),
	rule(`\.ds_store$`, CategoryOSMetadata),
	rule(`\.log$`, CategoryLog),
	rule(`\.min\.js$`, CategoryMinified),
	rule(`\.(png|jpg|jpeg|gif|svg)$`, CategoryMedia),
	rule(`\.(ttf|woff|woff2|eot)$`, CategoryMedia),
	rule(`\.(json|yaml|yml|xml)$`, CategoryData),
	rule(`\.venv2$`, CategoryVirtualEnv),
	rule(`\.myenv$`, CategoryVirtualEnv),
}

// DependencyMarkers はパス要素として完全一致した場合に依存物とみなす名前
// 部分一致は対象外（benv.py や myenvironment.py は除外しない）
var DependencyMarkers = map[string]Category{
	"node_modules":     CategoryDependency,
	"bower_components": CategoryDependency,
	"vendor":           CategoryDependency,
	"site-packages":    CategoryDependency,
	"__pycache__":      CategoryDependency,
	"venv":             CategoryVirtualEnv,
	".venv":            CategoryVirtualEnv,
	"env":              CategoryVirtualEnv,
	"virtualenv":       CategoryVirtualEnv,
	"virtualenvs":      CategoryVirtualEnv,
	"myenv":            CategoryVirtualEnv,
}

// BinaryExtensions はコンパイル済み・バイナリ成果物の拡張子
var BinaryExtensions = map[string]struct{}{
	".pyc": {}, ".pyo": {}, ".class": {}, ".o": {}, ".so": {}, ".dll": {},
	".exe": {}, ".dylib": {}, ".a": {}, ".jar": {}, ".war": {}, ".wasm": {},
	".bin": {}, ".obj": {},
}

// AllowedExtensions は取り込み対象とするテキスト・コードの拡張子
var AllowedExtensions = map[string]struct{}{
	".txt": {}, ".md": {}, ".markdown": {}, ".py": {}, ".js": {}, ".java": {},
	".csv": {}, ".ts": {}, ".c": {}, ".cpp": {}, ".h": {}, ".hpp": {},
	".css": {}, ".html": {}, ".sh": {}, ".php": {}, ".tex": {}, ".ps1": {},
	".go": {}, ".rb": {}, ".cs": {},
}
