package domain

type OperatorDirection string

const (
	DirectionCashIn  OperatorDirection = "cashin"
	DirectionCashOut OperatorDirection = "cashout"
)

// MomoService is one entry of the static operator catalog. The gateway and
// the orchestrator validate service codes against this list; it is never
// discovered at runtime.
type MomoService struct {
	Name      string
	Code      string
	Country   string
	Direction OperatorDirection
}

var momoServices = []MomoService{
	{Name: "Orange Money", Code: "OM_SN_CASHIN", Country: "SN", Direction: DirectionCashIn},
	{Name: "Orange Money", Code: "OM_SN_CASHOUT", Country: "SN", Direction: DirectionCashOut},
	{Name: "Wave", Code: "WAVE_SN_CASHIN", Country: "SN", Direction: DirectionCashIn},
	{Name: "Wave", Code: "WAVE_SN_CASHOUT", Country: "SN", Direction: DirectionCashOut},
	{Name: "Free Money", Code: "FM_SN_CASHIN", Country: "SN", Direction: DirectionCashIn},
	{Name: "Free Money", Code: "FM_SN_CASHOUT", Country: "SN", Direction: DirectionCashOut},
	{Name: "Wizall", Code: "WIZALL_SN_CASHIN", Country: "SN", Direction: DirectionCashIn},
	{Name: "Wizall", Code: "WIZALL_SN_CASHOUT", Country: "SN", Direction: DirectionCashOut},
}

// MomoServices returns the catalog in declaration order.
func MomoServices() []MomoService {
	out := make([]MomoService, len(momoServices))
	copy(out, momoServices)
	return out
}

func MomoServiceByCode(code string) (MomoService, bool) {
	for _, s := range momoServices {
		if s.Code == code {
			return s, true
		}
	}
	return MomoService{}, false
}

// OperatorDirectionForKind maps a momo transaction kind to the catalog
// direction its service code must carry.
func OperatorDirectionForKind(kind TransactionKind) (OperatorDirection, bool) {
	switch kind {
	case KindDepositMomo:
		return DirectionCashIn, true
	case KindWithdrawMomo:
		return DirectionCashOut, true
	}
	return "", false
}

// OperatorDisplayName resolves a service code to its human-readable operator
// name for transaction history; unknown codes fall back to the raw code.
func OperatorDisplayName(code string) string {
	if s, ok := MomoServiceByCode(code); ok {
		return s.Name
	}
	return code
}
