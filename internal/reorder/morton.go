package reorder

// mortonBits is the number of bits per axis a Morton key can hold.
const mortonBits = 21

// dilate spreads the low 21 bits of x so that two zero bits follow each.
func dilate(x uint64) uint64 {
	x &= 1<<mortonBits - 1
	x = (x | x<<32) & 0x1f00000000ffff
	x = (x | x<<16) & 0x1f0000ff0000ff
	x = (x | x<<8) & 0x100f00f00f00f00f
	x = (x | x<<4) & 0x10c30c30c30c30c3
	x = (x | x<<2) & 0x1249249249249249
	return x
}

// morton interleaves three cell coordinates. The axis order matches the
// octant key of the octree (x lowest, z highest), so grid cells are visited
// in the same order an octree descent would visit them.
func morton(x, y, z uint32) uint64 {
	return dilate(uint64(x)) | dilate(uint64(y))<<1 | dilate(uint64(z))<<2
}
