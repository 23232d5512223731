package breakout

// Detector finds zero crossings of the oscillator buffers at a fine index.
type Detector struct {
	aligner *TimeAligner
	fine    Series
	coarse  Series
	res     *Buffer
	sup     *Buffer
	shift   int
	mtf     bool
}

// NewDetector creates a detector reading res and sup
func NewDetector(aligner *TimeAligner, res, sup *Buffer, shift int) *Detector {
	return &Detector{
		aligner: aligner,
		fine:    aligner.fine,
		coarse:  aligner.coarse,
		res:     res,
		sup:     sup,
		shift:   shift,
		mtf:     !aligner.identity,
	}
}

// Indexes resolves the fine indices compared for a crossing evaluated at index.
// ok is false when either index cannot be resolved.
func (d *Detector) Indexes(index int) (check, prev int, ok bool) {
	if index < 0 || index >= d.fine.Len() {
		return -1, -1, false
	}

	if !d.mtf {
		check = index - d.shift
		prev = check - 1
		return check, prev, prev >= 0
	}

	ci := d.aligner.Index(index)
	if ci < 0 || ci-d.shift < 0 {
		return -1, -1, false
	}

	check = index
	if d.shift == 1 {
		// Last fine bar of the previous coarse bar
		open := d.coarse.OpenTime(ci)
		for i := check - 1; i >= 0; i-- {
			if d.fine.OpenTime(i).Before(open) {
				check = i
				break
			}
		}
	}

	// If nothing earlier exists prev stays equal to check and no crossing can fire.
	prev = check
	open := d.coarse.OpenTime(ci - d.shift)
	for i := prev - 1; i >= 0; i-- {
		if d.fine.OpenTime(i).Before(open) {
			prev = i
			break
		}
	}
	return check, prev, true
}

// Crossing reports buy and sell zero crossings at index
func (d *Detector) Crossing(index int) (buy, sell bool) {
	check, prev, ok := d.Indexes(index)
	if !ok {
		return false, false
	}
	return d.CrossingAt(check, prev)
}

// CrossingAt compares the buffers at check against prev.
// Undefined values on either side suppress the signal.
func (d *Detector) CrossingAt(check, prev int) (buy, sell bool) {
	if rc, ok := d.res.At(check).Get(); ok {
		if rp, ok := d.res.At(prev).Get(); ok {
			buy = rc > 0 && rp <= 0
		}
	}
	if sc, ok := d.sup.At(check).Get(); ok {
		if sp, ok := d.sup.At(prev).Get(); ok {
			sell = sc < 0 && sp >= 0
		}
	}
	return buy, sell
}
