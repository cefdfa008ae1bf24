package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// 注文に埋め込む割引スナップショット＋計算済み割引額。
type DiscountApplication struct {
	ID          int64
	Code        string
	ValueCents  *int64
	Percent     *int64
	AmountCents int64
}

// コードの正規化（前後空白を除去して大文字へ）
func NormalizeDiscountCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// 割引コードを検証して割引額を計算する。
// チェックは順番どおりで、それぞれ別のエラーになる。
// 未来のコードは「存在しない」と同じ扱い（未公開プロモを漏らさない）。
func EvaluateDiscount(ctx context.Context, discounts repo.DiscountRepository, code string, subtotalCents int64, now time.Time) (DiscountApplication, error) {
	d, err := discounts.FindByCode(ctx, code)
	if errors.Is(err, repo.ErrNotFound) {
		return DiscountApplication{}, NewHTTPError(http.StatusBadRequest, CodeInvalidDiscount, "invalid discount code")
	}
	if err != nil {
		return DiscountApplication{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	//開始前
	if d.StartsAt != nil && d.StartsAt.After(now) {
		return DiscountApplication{}, NewHTTPError(http.StatusBadRequest, CodeInvalidDiscount, "invalid discount code")
	}

	//終了後
	if d.EndsAt != nil && d.EndsAt.Before(now) {
		return DiscountApplication{}, NewHTTPError(http.StatusBadRequest, CodeInvalidDiscount, "invalid discount code")
	}

	//最低小計（満たせばまだ使えるので、必要額を返す）
	if d.MinSubtotalCents != nil && subtotalCents < *d.MinSubtotalCents {
		return DiscountApplication{}, NewHTTPErrorWithDetails(
			http.StatusBadRequest, CodeDiscountMinSubtotal, "subtotal below discount minimum",
			map[string]int64{"min_subtotal_cents": *d.MinSubtotalCents},
		)
	}

	//使用回数上限（目安の事前チェック。本当の保証はトランザクション内の条件付きUPDATE）
	if d.UsageLimit != nil && d.TimesUsed >= *d.UsageLimit {
		return DiscountApplication{}, NewHTTPError(http.StatusConflict, CodeDiscountExhausted, "discount code exhausted")
	}

	amount := computeDiscountAmount(d, subtotalCents)

	return DiscountApplication{
		ID:          d.ID,
		Code:        d.Code,
		ValueCents:  d.ValueCents,
		Percent:     d.Percent,
		AmountCents: amount,
	}, nil
}

// FIXEDは小計で頭打ち、PERCENTは切り捨てで計算して小計で頭打ち。
// 割引が小計を超えることはない（マイナス行を作らない）
func computeDiscountAmount(d model.DiscountCode, subtotalCents int64) int64 {
	var amount int64

	switch d.Kind {
	case model.DiscountKindFixed:
		if d.ValueCents != nil {
			amount = *d.ValueCents
		}
	case model.DiscountKindPercent:
		if d.Percent != nil {
			amount = subtotalCents * *d.Percent / 100
		}
	}

	if amount < 0 {
		amount = 0
	}
	if amount > subtotalCents {
		amount = subtotalCents
	}
	return amount
}
