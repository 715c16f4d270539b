package cache

const (
	KeyCarts = "carts:%s"
)
