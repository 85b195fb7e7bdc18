package model

// カートの1行。DBには保存しない（注文時はOrderItemになる）
type CartItem struct {
	ProductID string `json:"productId"`
	Variant   string `json:"variant"`
	Quantity  int64  `json:"quantity"`
}
