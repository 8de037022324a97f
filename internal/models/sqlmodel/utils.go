package sqlmodel

import (
	"strconv"

	"github.com/pkg/errors"
)

func parseSnowflakeStringToInt64(str string) (int64, error) {
	ret, err := strconv.ParseInt(str, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "无法解析 snowflake ID '%v'", str)
	}

	return ret, nil
}

func parseInt64ToSnowflakeString(id int64) string {
	return strconv.FormatInt(id, 10)
}
