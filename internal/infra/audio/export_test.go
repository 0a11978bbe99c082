package audio

func (u *URLSource) SetMaxBytes(n int64) {
	u.maxBytes = n
}
