// Package tokenizer は tiktoken を使ったトークン数の計測を提供する
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding は既定のエンコーディング
const DefaultEncoding = "cl100k_base"

// TokenCounter はトークン数をカウントする機能を提供する
type TokenCounter struct {
	encoding *tiktoken.Tiktoken
}

// NewTokenCounter は新しいTokenCounterを作成する
// cl100k_baseエンコーディングを使用する
func NewTokenCounter() (*TokenCounter, error) {
	return NewTokenCounterWithEncoding(DefaultEncoding)
}

// NewTokenCounterWithEncoding はエンコーディング名を指定して TokenCounter を作成する
func NewTokenCounterWithEncoding(name string) (*TokenCounter, error) {
	encoding, err := tiktoken.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("failed to get tiktoken encoding %s: %w", name, err)
	}
	return &TokenCounter{encoding: encoding}, nil
}

// CountTokens はテキストのトークン数をカウントする
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.encoding == nil {
		return 0
	}
	return len(tc.encoding.Encode(text, nil, nil))
}
