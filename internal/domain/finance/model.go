package finance

import (
	"time"

	"github.com/google/uuid"
)

// Transaction kinds. Cotizada appointments produce INGRESO_COTIZADO so
// quoted income can be reported separately.
const (
	KindIncome       = "INGRESO"
	KindQuotedIncome = "INGRESO_COTIZADO"
	KindExpense      = "GASTO"
)

var incomeKinds = []string{KindIncome, KindQuotedIncome}

type Transaction struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Kind string    `db:"kind" json:"kind"`

	Amount      float64 `db:"amount" json:"amount"`
	Description string  `db:"description" json:"description"`

	AppointmentID *uuid.UUID `db:"appointment_id" json:"appointment_id"`
	ActivityID    *uuid.UUID `db:"activity_id" json:"activity_id"`
	ReceiptURL    *string    `db:"receipt_url" json:"receipt_url"`

	// OwnerID is the user the transaction belongs to; every read is
	// scoped to it.
	OwnerID uuid.UUID `db:"owner_id" json:"owner_id"`

	Date      time.Time `db:"date" json:"date"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Balance sums each transaction kind over the standard reporting periods.
type Balance struct {
	Incomes       PeriodSums `json:"ingresos"`
	QuotedIncomes PeriodSums `json:"ingresos_cotizados"`
	Expenses      PeriodSums `json:"gastos"`
}

type PeriodSums struct {
	Total   float64 `json:"total"`
	Month   float64 `json:"mes"`
	Quarter float64 `json:"trimestre"`
	Year    float64 `json:"año"`
}

// Config is the seeded singleton holding the default prices used when
// registering income without an explicit amount.
type Config struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	DefaultSessionPrice float64   `db:"default_session_price" json:"default_session_price"`
	DefaultQuotedPrice  float64   `db:"default_quoted_price" json:"default_quoted_price"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}
