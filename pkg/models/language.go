package models

import (
	"path/filepath"
	"strings"
)

// languageByExt maps lower-case file extensions onto language names.
var languageByExt = map[string]string{
	".go":    "Go",
	".py":    "Python",
	".js":    "JavaScript",
	".ts":    "TypeScript",
	".java":  "Java",
	".c":     "C",
	".cpp":   "C++",
	".cc":    "C++",
	".h":     "C",
	".cs":    "C#",
	".rs":    "Rust",
	".php":   "PHP",
	".rb":    "Ruby",
	".swift": "Swift",
	".kt":    "Kotlin",
	".scala": "Scala",
	".clj":   "Clojure",
	".hs":    "Haskell",
	".ml":    "OCaml",
	".r":     "R",
	".sh":    "Shell",
	".bash":  "Shell",
	".ps1":   "PowerShell",
	".sql":   "SQL",
	".lua":   "Lua",
	".html":  "HTML",
	".css":   "CSS",
	".scss":  "SCSS",
	".sass":  "Sass",
	".less":  "Less",
}

// LanguageOf returns the programming language of a file from its
// extension, or "" when the extension is not recognized.
func LanguageOf(filePath string) string {
	return languageByExt[strings.ToLower(filepath.Ext(filePath))]
}
