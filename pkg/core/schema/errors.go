package schema

import (
	"fmt"
	"strings"
)

// UndefinedRuleError возникает, когда для столбца нет правила
// преобразования: либо тип значений фрейма не представим в SQL
// Server, либо тип SQL неизвестен таблице правил.
type UndefinedRuleError struct {
	Columns []string
}

func (e *UndefinedRuleError) Error() string {
	return fmt.Sprintf("undefined conversion rule for columns [%s]",
		strings.Join(e.Columns, ", "))
}

// UndefinedColumnError возникает при обращении к столбцу,
// отсутствующему во фрейме.
type UndefinedColumnError struct {
	Column string
}

func (e *UndefinedColumnError) Error() string {
	return fmt.Sprintf("column [%s] does not exist in frame", e.Column)
}
