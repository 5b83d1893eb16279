// README: Shipping label barcode format: BTAOL followed by the nine-digit order id.
package order

import (
	"fmt"
	"regexp"

	"fulfil/internal/types"
)

var barcodePattern = regexp.MustCompile(`^BTAOL(\d{9})$`)

func ParseBarcode(code string) (types.ID, error) {
	m := barcodePattern.FindStringSubmatch(code)
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBarcode, code)
	}
	id, err := types.ParseID(m[1])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidBarcode, code)
	}
	return id, nil
}

// MaxBarcodeID is the largest order id that fits the nine-digit barcode.
const MaxBarcodeID types.ID = 999_999_999

func FormatBarcode(id types.ID) (string, error) {
	if id <= 0 || id > MaxBarcodeID {
		return "", fmt.Errorf("%w: order id %d outside 1..%d", ErrInvalidBarcode, int64(id), int64(MaxBarcodeID))
	}
	return fmt.Sprintf("BTAOL%09d", int64(id)), nil
}
