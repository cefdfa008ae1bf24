package usecase

import (
	"context"
	"net/http"
	"strings"

	repo "storefront/internal/repository"
)

// CartUsecase は /cart の業務ロジックです。
// カートは読み書きするが、チェックアウトからは読むだけ。
type CartUsecase struct {
	cartRepo     repo.CartRepository
	cartLineRepo repo.CartLineRepository
	productRepo  repo.ProductRepository
	variantRepo  repo.VariantRepository
}

func NewCartUsecase(
	cartRepo repo.CartRepository,
	cartLineRepo repo.CartLineRepository,
	productRepo repo.ProductRepository,
	variantRepo repo.VariantRepository,
) *CartUsecase {
	return &CartUsecase{
		cartRepo:     cartRepo,
		cartLineRepo: cartLineRepo,
		productRepo:  productRepo,
		variantRepo:  variantRepo,
	}
}

// priceは追加時点のスナップショットを返す。
type CartLineResponse struct {
	ID         int64  `json:"id"`
	ProductID  int64  `json:"product_id"`
	Name       string `json:"name"`
	Size       string `json:"size,omitempty"`
	PriceCents int64  `json:"price_cents"`
	Quantity   int64  `json:"quantity"`
}

type CartResponse struct {
	Lines      []CartLineResponse `json:"lines"`
	TotalCents int64              `json:"total_cents"`
}

type AddCartInput struct {
	ProductID int64
	Size      string
	Quantity  int64
}

type UpdateCartLineInput struct {
	Quantity int64
}

// GetCart はカート取得（無ければACTIVEを作って空を返す）。
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthenticated, "unauthorized")
	}

	cart, err := u.cartRepo.GetOrCreateActiveByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// AddToCart はカートに追加（同一商品・同一サイズは数量加算）。
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthenticated, "unauthorized")
	}
	if in.ProductID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeInvalidPayload, "invalid product_id")
	}
	if in.Quantity < 1 || in.Quantity > 99 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeInvalidPayload, "invalid quantity")
	}

	// ACTIVEカート取得（無ければ作成）
	cart, err := u.cartRepo.GetOrCreateActiveByUserID(ctx, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	// 商品チェック（公開のみ）
	p, err := u.productRepo.FindByID(ctx, in.ProductID)
	if err == repo.ErrNotFound {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeInvalidPayload, "invalid product")
	}
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	if !p.IsActive {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeInvalidPayload, "invalid product")
	}

	// サイズ指定があれば実在とストックを確認する。
	// サイズ無しの商品は在庫制約なし
	size := strings.TrimSpace(in.Size)
	if size != "" {
		v, err := u.variantRepo.FindByProductAndSize(ctx, in.ProductID, size)
		if err == repo.ErrNotFound {
			return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeInvalidPayload, "invalid size")
		}
		if err != nil {
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		// 既存数量と合算して在庫を超えないか
		lines, err := u.cartLineRepo.ListByCartID(ctx, cart.ID)
		if err != nil {
			return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
		}

		var existingQty int64 = 0
		for _, l := range lines {
			if l.ProductID == in.ProductID && l.Size == size {
				existingQty = l.Quantity
				break
			}
		}

		if existingQty+in.Quantity > v.Stock {
			return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeInvalidPayload, "stock exceeded")
		}
	}

	// Upsert（同一商品・同一サイズは加算）
	// unit_price_snapshotは「追加時点の価格」を渡す
	if err := u.cartLineRepo.UpsertLine(ctx, cart.ID, in.ProductID, size, in.Quantity, p.PriceCents); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	return u.buildCartResponse(ctx, cart.ID)
}

// UpdateLine は明細の数量変更。
func (u *CartUsecase) UpdateLine(ctx context.Context, userID int64, lineID int64, in UpdateCartLineInput) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthenticated, "unauthorized")
	}
	if lineID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeInvalidPayload, "invalid id")
	}
	if in.Quantity < 1 || in.Quantity > 99 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeInvalidPayload, "invalid quantity")
	}

	//所有チェック（他人の明細は404扱い）
	owned, err := u.cartLineRepo.IsOwnedByUser(ctx, lineID, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	if !owned {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
	}

	line, err := u.cartLineRepo.FindByID(ctx, lineID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	if err := u.cartLineRepo.UpdateQuantity(ctx, lineID, in.Quantity); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	return u.buildCartResponse(ctx, line.CartID)
}

// RemoveLine は明細削除。
func (u *CartUsecase) RemoveLine(ctx context.Context, userID int64, lineID int64) (CartResponse, error) {
	if userID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthenticated, "unauthorized")
	}
	if lineID <= 0 {
		return CartResponse{}, NewHTTPError(http.StatusBadRequest, CodeInvalidPayload, "invalid id")
	}

	owned, err := u.cartLineRepo.IsOwnedByUser(ctx, lineID, userID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}
	if !owned {
		return CartResponse{}, NewHTTPError(http.StatusNotFound, CodeNotFound, "not found")
	}

	line, err := u.cartLineRepo.FindByID(ctx, lineID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	if err := u.cartLineRepo.DeleteByID(ctx, lineID); err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	return u.buildCartResponse(ctx, line.CartID)
}

func (u *CartUsecase) buildCartResponse(ctx context.Context, cartID int64) (CartResponse, error) {
	lines, err := u.cartLineRepo.ListByCartID(ctx, cartID)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	ids := make([]int64, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := u.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return CartResponse{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	out := CartResponse{Lines: make([]CartLineResponse, 0, len(lines))}
	for _, l := range lines {
		name := ""
		if p, ok := products[l.ProductID]; ok {
			name = p.Name
		}
		out.Lines = append(out.Lines, CartLineResponse{
			ID:         l.ID,
			ProductID:  l.ProductID,
			Name:       name,
			Size:       l.Size,
			PriceCents: l.UnitPriceSnapshot,
			Quantity:   l.Quantity,
		})
		out.TotalCents += l.UnitPriceSnapshot * l.Quantity
	}

	return out, nil
}
