// Package carthash はカート内容の指紋（cart_hash）を作る。
// 同じ明細なら入力順に関係なく同じ値になる。
package carthash

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"strconv"
	"strings"

	"keystore/internal/domain/model"
)

const lineSeparator = "|"

// Compute は明細を productId-variant 順に並べて SHA-256 の16進文字列を返す。
// 空カートの拒否と重複行の統合は呼び出し側の責任。
func Compute(items []model.CartItem) string {
	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b model.CartItem) int {
		if c := cmp.Compare(sortKey(a), sortKey(b)); c != 0 {
			return c
		}
		// "a-b"+"c" と "a"+"b-c" のようにキーが衝突したときの順序を固定する
		if c := cmp.Compare(a.ProductID, b.ProductID); c != 0 {
			return c
		}
		return cmp.Compare(a.Quantity, b.Quantity)
	})

	lines := make([]string, 0, len(sorted))
	for _, it := range sorted {
		lines = append(lines, it.ProductID+":"+it.Variant+":"+strconv.FormatInt(it.Quantity, 10))
	}

	sum := sha256.Sum256([]byte(strings.Join(lines, lineSeparator)))
	return hex.EncodeToString(sum[:])
}

// NormalizeItems は同じ (productId, variant) の行を数量合算で1行にまとめる。
// 最初に現れた順序を保つ。
func NormalizeItems(items []model.CartItem) []model.CartItem {
	out := make([]model.CartItem, 0, len(items))
	index := make(map[string]int, len(items))
	for _, it := range items {
		k := it.ProductID + "\x00" + it.Variant
		if i, ok := index[k]; ok {
			out[i].Quantity += it.Quantity
			continue
		}
		index[k] = len(out)
		out = append(out, it)
	}
	return out
}

func sortKey(it model.CartItem) string {
	return it.ProductID + "-" + it.Variant
}
