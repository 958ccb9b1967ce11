package handler

import (
	"net/http"

	"github.com/fkash/fkash-backend/internal/domain"
)

type operatorDTO struct {
	Code      string `json:"code"`
	Operator  string `json:"operator"`
	Country   string `json:"country"`
	Direction string `json:"direction"`
}

// Operators lists the supported mobile-money services so clients can build
// operator pickers without hardcoding service codes.
func Operators(w http.ResponseWriter, r *http.Request) {
	services := domain.MomoServices()
	dtos := make([]operatorDTO, len(services))
	for i, s := range services {
		dtos[i] = operatorDTO{
			Code:      s.Code,
			Operator:  s.Name,
			Country:   s.Country,
			Direction: string(s.Direction),
		}
	}
	RespondSuccess(w, http.StatusOK, dtos)
}
