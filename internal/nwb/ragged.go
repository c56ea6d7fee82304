package nwb

// Flatten concatenates ragged rows and returns the exclusive end offset of
// each row, the layout used for VectorIndex columns.
func Flatten(rows [][]float64) ([]float64, []int64) {
	total := 0
	for _, r := range rows {
		total += len(r)
	}
	data := make([]float64, 0, total)
	index := make([]int64, len(rows))
	for i, r := range rows {
		data = append(data, r...)
		index[i] = int64(len(data))
	}
	return data, index
}

// Unflatten reverses Flatten.
func Unflatten(data []float64, index []int64) [][]float64 {
	rows := make([][]float64, len(index))
	var start int64
	for i, end := range index {
		rows[i] = data[start:end]
		start = end
	}
	return rows
}
