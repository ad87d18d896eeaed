package snowflake

// BucketSize is the width of a message bucket: one week in milliseconds.
const BucketSize int64 = 1000 * 60 * 60 * 24 * 7

// Bucket returns the week bucket an id falls in.
func Bucket(id ID) int64 {
	return Decompose(id).Timestamp / BucketSize
}

// Buckets lists the buckets from oldest to newest, both included.
// If newest comes before oldest the result is empty.
func Buckets(oldest, newest int64) []int64 {
	if newest < oldest {
		return nil
	}
	res := make([]int64, 0, newest-oldest+1)
	for b := oldest; b <= newest; b++ {
		res = append(res, b)
	}
	return res
}

// CurrentBucket is the bucket of an id generated now.
func (g *Generator) CurrentBucket() int64 {
	ts := g.now().UnixMilli() - g.epoch
	if ts < 0 {
		return 0
	}
	return ts / BucketSize
}
