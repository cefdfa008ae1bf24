package usecase

import (
	"context"
	"strings"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// チェックアウトで受け取る住所。
type AddressInput struct {
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone"`
}

// 前後空白を落とし、必須フィールドを確認する。
// 必須: full_name / line1 / city / postal_code / country
func normalizeAddress(in AddressInput) (model.Address, []string) {
	a := model.Address{
		FullName:   strings.TrimSpace(in.FullName),
		Line1:      strings.TrimSpace(in.Line1),
		Line2:      strings.TrimSpace(in.Line2),
		City:       strings.TrimSpace(in.City),
		Region:     strings.TrimSpace(in.Region),
		PostalCode: strings.TrimSpace(in.PostalCode),
		Country:    strings.ToUpper(strings.TrimSpace(in.Country)),
		Phone:      strings.TrimSpace(in.Phone),
	}

	var missing []string
	if a.FullName == "" {
		missing = append(missing, "full_name")
	}
	if a.Line1 == "" {
		missing = append(missing, "line1")
	}
	if a.City == "" {
		missing = append(missing, "city")
	}
	if a.PostalCode == "" {
		missing = append(missing, "postal_code")
	}
	if len(a.Country) != 2 {
		missing = append(missing, "country")
	}

	return a, missing
}

// 既存の同一住所を探して再利用、無ければ作成。
// save=falseなら住所帳には載せない（user_idなしで作る）
func resolveAddress(ctx context.Context, addresses repo.AddressRepository, userID int64, a model.Address, save bool) (model.Address, error) {
	existing, found, err := addresses.FindMatch(ctx, userID, a)
	if err != nil {
		return model.Address{}, err
	}
	if found {
		return existing, nil
	}

	if save {
		a.UserID = &userID
	}
	return addresses.Create(ctx, a)
}
