package breakout

// Highest returns the maximum of field over [from, from+count).
// Indices outside the series are skipped; if none remain the result is Undefined.
func Highest(s Series, f Field, from, count int) Value {
	n := s.Len()
	var best float64
	found := false
	for i := from; i < from+count; i++ {
		if i < 0 || i >= n {
			continue
		}
		v := f.value(s, i)
		if !found || v > best {
			best = v
			found = true
		}
	}
	if !found {
		return Undefined
	}
	return Some(best)
}

// Lowest returns the minimum of field over [from, from+count), with the same
// boundary handling as Highest.
func Lowest(s Series, f Field, from, count int) Value {
	n := s.Len()
	var best float64
	found := false
	for i := from; i < from+count; i++ {
		if i < 0 || i >= n {
			continue
		}
		v := f.value(s, i)
		if !found || v < best {
			best = v
			found = true
		}
	}
	if !found {
		return Undefined
	}
	return Some(best)
}
