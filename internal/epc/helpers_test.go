package epc

import (
	"time"

	"github.com/sells-group/travelsearch/internal/model"
)

func day(month time.Month, d int) time.Time {
	return time.Date(2026, month, d, 0, 0, 0, 0, time.UTC)
}

func augustKiwi() model.EPCRecord {
	return model.NewEPCRecord("kiwi", model.VerticalFlights, day(8, 1), day(8, 31), 40, 1, 2.40)
}

func septemberKiwi() model.EPCRecord {
	return model.NewEPCRecord("kiwi", model.VerticalFlights, day(9, 1), day(9, 30), 1200, 31, 84)
}

// septemberKiwiTail shares septemberKiwi's period end but starts mid-month.
func septemberKiwiTail() model.EPCRecord {
	return model.NewEPCRecord("kiwi", model.VerticalFlights, day(9, 15), day(9, 30), 300, 9, 30)
}
