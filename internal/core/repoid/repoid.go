// Package repoid はリポジトリ指定文字列を owner/name に正規化する
package repoid

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	giturls "github.com/whilp/git-urls"
)

// ErrInvalidRepository はリポジトリ指定が解釈できない場合のエラー
var ErrInvalidRepository = errors.New("invalid repository")

var segmentPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Repository はリポジトリの識別子
type Repository struct {
	Owner string
	Name  string
}

// FullName は "owner/name" 形式の文字列を返す
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

func (r Repository) String() string {
	return r.FullName()
}

// Parse はリポジトリ指定を解釈します
//
// 受け付ける形式:
//   - name（defaultOwner で補完）
//   - owner/name
//   - https://github.com/owner/name(.git)
//   - git@github.com:owner/name.git
func Parse(input, defaultOwner string) (Repository, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return Repository{}, fmt.Errorf("%w: empty repository", ErrInvalidRepository)
	}

	if strings.Contains(s, "://") || strings.HasPrefix(s, "git@") {
		u, err := giturls.Parse(s)
		if err != nil {
			return Repository{}, fmt.Errorf("%w: %v", ErrInvalidRepository, err)
		}
		s = strings.Trim(u.Path, "/")
	}
	s = strings.TrimSuffix(s, ".git")

	parts := strings.Split(s, "/")
	switch len(parts) {
	case 1:
		if defaultOwner == "" {
			return Repository{}, fmt.Errorf("%w: owner is required for %q", ErrInvalidRepository, input)
		}
		parts = []string{defaultOwner, parts[0]}
	case 2:
	default:
		return Repository{}, fmt.Errorf("%w: %q", ErrInvalidRepository, input)
	}

	for _, p := range parts {
		if p == "." || p == ".." || !segmentPattern.MatchString(p) {
			return Repository{}, fmt.Errorf("%w: %q", ErrInvalidRepository, input)
		}
	}

	return Repository{Owner: parts[0], Name: parts[1]}, nil
}
