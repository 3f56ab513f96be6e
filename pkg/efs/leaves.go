package efs

import (
	"fmt"
	"strconv"
)

// LeavesPerBank - число лепестков в одном банке MLC.
const LeavesPerBank = 80

// Bank - банк лепестков MLC в системе координат LINAC.
type Bank int

const (
	// BankX1 получает вторую половину массива LeafJawPositions плана, без смены знака.
	BankX1 Bank = iota + 1
	// BankX2 получает первую половину массива LeafJawPositions плана, знак инвертируется.
	BankX2
)

func (b Bank) String() string {
	switch b {
	case BankX1:
		return "X1"
	case BankX2:
		return "X2"
	default:
		return "UNKNOWN"
	}
}

// Таблицы кодов элементов для лепестков 1..80 каждого банка.
// Это фиксированные данные протокола, а не формула.
var mlcX1Codes = [LeavesPerBank]uint16{
	0x101, 0x102, 0x103, 0x104, 0x105, 0x106, 0x107, 0x108,
	0x109, 0x10a, 0x10b, 0x10c, 0x10d, 0x10e, 0x10f, 0x110,
	0x111, 0x112, 0x113, 0x114, 0x115, 0x116, 0x117, 0x118,
	0x119, 0x11a, 0x11b, 0x11c, 0x11d, 0x11e, 0x11f, 0x120,
	0x121, 0x122, 0x123, 0x124, 0x125, 0x126, 0x127, 0x128,
	0x129, 0x12a, 0x12b, 0x12c, 0x12d, 0x12e, 0x12f, 0x130,
	0x131, 0x132, 0x133, 0x134, 0x135, 0x136, 0x137, 0x138,
	0x139, 0x13a, 0x13b, 0x13c, 0x13d, 0x13e, 0x13f, 0x140,
	0x141, 0x142, 0x143, 0x144, 0x145, 0x146, 0x147, 0x148,
	0x149, 0x14a, 0x14b, 0x14c, 0x14d, 0x14e, 0x14f, 0x150,
}

var mlcX2Codes = [LeavesPerBank]uint16{
	0x201, 0x202, 0x203, 0x204, 0x205, 0x206, 0x207, 0x208,
	0x209, 0x20a, 0x20b, 0x20c, 0x20d, 0x20e, 0x20f, 0x210,
	0x211, 0x212, 0x213, 0x214, 0x215, 0x216, 0x217, 0x218,
	0x219, 0x21a, 0x21b, 0x21c, 0x21d, 0x21e, 0x21f, 0x220,
	0x221, 0x222, 0x223, 0x224, 0x225, 0x226, 0x227, 0x228,
	0x229, 0x22a, 0x22b, 0x22c, 0x22d, 0x22e, 0x22f, 0x230,
	0x231, 0x232, 0x233, 0x234, 0x235, 0x236, 0x237, 0x238,
	0x239, 0x23a, 0x23b, 0x23c, 0x23d, 0x23e, 0x23f, 0x240,
	0x241, 0x242, 0x243, 0x244, 0x245, 0x246, 0x247, 0x248,
	0x249, 0x24a, 0x24b, 0x24c, 0x24d, 0x24e, 0x24f, 0x250,
}

func (b Bank) table() (*[LeavesPerBank]uint16, error) {
	switch b {
	case BankX1:
		return &mlcX1Codes, nil
	case BankX2:
		return &mlcX2Codes, nil
	default:
		return nil, fmt.Errorf("efs: unknown leaf bank %d", int(b))
	}
}

// LeafRecord - позиция одного лепестка в единицах LINAC (см), готовая к записи.
type LeafRecord struct {
	Code  TagCode
	Value float64
}

// EncodeBank кодирует 80 смещений одного банка (десятые доли см, как в плане).
// i-й элемент (с 1) берет код из таблицы банка по индексу 81-i: порядок
// лепестков в плане и на LINAC встречный. Менять только вместе с эталонными файлами.
func EncodeBank(bank Bank, positions []float64) ([]LeafRecord, error) {
	table, err := bank.table()
	if err != nil {
		return nil, err
	}
	if len(positions) != LeavesPerBank {
		return nil, fmt.Errorf("efs: bank %s expects %d leaf positions, got %d", bank, LeavesPerBank, len(positions))
	}

	records := make([]LeafRecord, 0, LeavesPerBank)
	for i := 1; i <= LeavesPerBank; i++ {
		p := positions[i-1]
		value := Round2(p / 10)
		if bank == BankX2 {
			value = Round2(-p / 10)
		}
		records = append(records, LeafRecord{
			Code:  NewTagCode(GroupBeam, table[LeavesPerBank-i]),
			Value: value,
		})
	}
	return records, nil
}

// EncodeLeaves кодирует полный массив LeafJawPositions (160 значений):
// элементы 1..80 идут в банк X2 по индексу 81-i, элементы 81..160 - в банк X1
// по индексу 161-i.
func EncodeLeaves(positions []float64) ([]LeafRecord, error) {
	if len(positions) != 2*LeavesPerBank {
		return nil, fmt.Errorf("efs: expected %d leaf positions, got %d", 2*LeavesPerBank, len(positions))
	}
	first, err := EncodeBank(BankX2, positions[:LeavesPerBank])
	if err != nil {
		return nil, err
	}
	second, err := EncodeBank(BankX1, positions[LeavesPerBank:])
	if err != nil {
		return nil, err
	}
	return append(first, second...), nil
}

// LookupLeaf определяет банк и номер лепестка на LINAC (1..80) по коду тега.
func LookupLeaf(code TagCode) (Bank, int, bool) {
	if code.Group() != GroupBeam {
		return 0, 0, false
	}
	el := code.Element()
	switch {
	case el >= mlcX1Codes[0] && el <= mlcX1Codes[LeavesPerBank-1]:
		return BankX1, int(el-mlcX1Codes[0]) + 1, true
	case el >= mlcX2Codes[0] && el <= mlcX2Codes[LeavesPerBank-1]:
		return BankX2, int(el-mlcX2Codes[0]) + 1, true
	default:
		return 0, 0, false
	}
}

// IsLeaf сообщает, относится ли код к лепестку MLC.
func IsLeaf(code TagCode) bool {
	_, _, ok := LookupLeaf(code)
	return ok
}

// DecodeLeaves восстанавливает массив LeafJawPositions плана из записей лепестков
// (с точностью округления до сотых см).
func DecodeLeaves(records []LeafRecord) ([]float64, error) {
	positions := make([]float64, 2*LeavesPerBank)
	seen := make([]bool, 2*LeavesPerBank)
	for _, r := range records {
		bank, leaf, ok := LookupLeaf(r.Code)
		if !ok {
			return nil, fmt.Errorf("efs: %s is not a leaf code", r.Code)
		}
		i := LeavesPerBank + 1 - leaf
		idx := i - 1
		value := r.Value * 10
		if bank == BankX2 {
			value = -value
		} else {
			idx += LeavesPerBank
		}
		if seen[idx] {
			return nil, fmt.Errorf("efs: duplicate leaf code %s", r.Code)
		}
		seen[idx] = true
		positions[idx] = value
	}
	for idx, ok := range seen {
		if !ok {
			return nil, fmt.Errorf("efs: missing leaf position %d", idx+1)
		}
	}
	return positions, nil
}

// Round2 округляет до сотых по точному двоичному значению, половины к
// четному. Знак нуля сохраняется: -0.001 дает -0.
func Round2(v float64) float64 {
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	if err != nil {
		return v
	}
	return r
}
