package anomaly

import "errors"

var ErrDuplicateWindow = errors.New("punch within duplicate window of previous punch")
