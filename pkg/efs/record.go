package efs

import (
	"fmt"
	"strconv"
	"strings"
)

// HeaderControlPoint - индекс контрольной точки для заголовочных записей поля.
const HeaderControlPoint = 0

// Record - одна строка EFS файла: "GGGG,E-C VALUE".
type Record struct {
	Code         TagCode
	ControlPoint int
	Value        string
}

// String форматирует запись так, как она хранится в файле (без перевода строки).
func (r Record) String() string {
	return fmt.Sprintf("%04x,%x-%d %s", r.Code.Group(), r.Code.Element(), r.ControlPoint, r.Value)
}

// ParseRecord разбирает строку EFS файла. Значение сохраняется как есть, байт в байт.
func ParseRecord(line string) (Record, error) {
	line = strings.TrimRight(line, "\r\n")

	key, value, found := strings.Cut(line, " ")
	if !found {
		return Record{}, fmt.Errorf("efs: record %q has no value separator", line)
	}
	address, cpToken, found := strings.Cut(key, "-")
	if !found {
		return Record{}, fmt.Errorf("efs: record %q has no control point", line)
	}
	groupToken, elementToken, found := strings.Cut(address, ",")
	if !found {
		return Record{}, fmt.Errorf("efs: record %q has no group/element separator", line)
	}

	group, err := strconv.ParseUint(groupToken, 16, 16)
	if err != nil {
		return Record{}, fmt.Errorf("efs: bad group in %q: %w", line, err)
	}
	element, err := strconv.ParseUint(elementToken, 16, 16)
	if err != nil {
		return Record{}, fmt.Errorf("efs: bad element in %q: %w", line, err)
	}
	cp, err := strconv.Atoi(cpToken)
	if err != nil || cp < 0 {
		return Record{}, fmt.Errorf("efs: bad control point in %q", line)
	}

	return Record{
		Code:         NewTagCode(uint16(group), uint16(element)),
		ControlPoint: cp,
		Value:        value,
	}, nil
}

// FormatFloat пишет число так же, как его писал исходный конвертер:
// кратчайшее представление и обязательная дробная часть ("100.0", "-2.5", "-0.0").
func FormatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// FormatNumber пишет число без принудительной дробной части ("6", "6.5").
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatInt пишет целое значение.
func FormatInt(v int) string {
	return strconv.Itoa(v)
}
