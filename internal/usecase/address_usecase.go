package usecase

import (
	"context"
	"net/http"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"
)

// 住所帳の参照系。書き込みはチェックアウトのsave_address経由のみ。
type AddressUsecase struct {
	addresses repo.AddressRepository
}

func NewAddressUsecase(addresses repo.AddressRepository) *AddressUsecase {
	return &AddressUsecase{addresses: addresses}
}

type AddressOutput struct {
	ID         int64  `json:"id"`
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// ListMyAddresses は保存済み住所の一覧（非所有の住所は載らない）。
func (u *AddressUsecase) ListMyAddresses(ctx context.Context, userID int64) ([]AddressOutput, error) {
	if userID <= 0 {
		return []AddressOutput{}, NewHTTPError(http.StatusUnauthorized, CodeUnauthenticated, "unauthorized")
	}

	list, err := u.addresses.ListByUserID(ctx, userID)
	if err != nil {
		return []AddressOutput{}, NewHTTPError(http.StatusInternalServerError, CodeInternal, "db error")
	}

	outs := make([]AddressOutput, 0, len(list))
	for _, a := range list {
		outs = append(outs, toAddressOutput(a))
	}
	return outs, nil
}

func toAddressOutput(a model.Address) AddressOutput {
	return AddressOutput{
		ID:         a.ID,
		FullName:   a.FullName,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		Region:     a.Region,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}
