package technical

import (
	"errors"
	"fmt"

	"github.com/skalibog/quantladder/pkg/models"
)

// ErrInsufficientData недостаточно свечей для анализа таймфрейма
var ErrInsufficientData = errors.New("недостаточно данных")

// InsufficientDataError описывает нехватку свечей на конкретном таймфрейме
type InsufficientDataError struct {
	Timeframe models.Timeframe
	Need      int
	Got       int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("недостаточно свечей для %s: нужно минимум %d, получено %d", e.Timeframe, e.Need, e.Got)
}

// Is позволяет сравнивать с ErrInsufficientData через errors.Is
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}
