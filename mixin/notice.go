package mixin

import "fmt"

// MixinsGlob selects files of every supported mixin format inside mixin
// directory.
const MixinsGlob = "*.{css,pcss,sss,json,yaml,yml,toml,cue,sh}"

// NoticeKind is the message type of a dependency notice.
type NoticeKind string

const (
	FileDependency      NoticeKind = "dependency"
	DirectoryDependency NoticeKind = "dir-dependency"
)

// Notice tells host build tool which inputs the processed document depends
// on, so it could be rebuilt when they change.
type Notice struct {
	Kind   NoticeKind
	File   string // for FileDependency
	Dir    string // for DirectoryDependency
	Glob   string // for DirectoryDependency
	Parent string
}

func fileNotice(file, parent string) Notice {
	return Notice{Kind: FileDependency, File: file, Parent: parent}
}

func dirNotice(dir string) Notice {
	return Notice{Kind: DirectoryDependency, Dir: dir, Glob: MixinsGlob}
}

func (n Notice) String() string {
	switch n.Kind {
	case DirectoryDependency:
		return fmt.Sprintf("%s %s/%s", n.Kind, n.Dir, n.Glob)
	default:
		if n.Parent != "" {
			return fmt.Sprintf("%s %s (%s)", n.Kind, n.File, n.Parent)
		}
		return fmt.Sprintf("%s %s", n.Kind, n.File)
	}
}
