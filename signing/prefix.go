package signing

// ShortestPrefixes returns, for each key, the shortest prefix that no other
// key in the set shares. Identical keys keep their full length.
func ShortestPrefixes(pubs [][]byte) [][]byte {
	out := make([][]byte, len(pubs))
	for i, pub := range pubs {
		need := 1
		for j, other := range pubs {
			if i == j {
				continue
			}
			if n := commonPrefix(pub, other) + 1; n > need {
				need = n
			}
		}
		if need > len(pub) {
			need = len(pub)
		}
		out[i] = pub[:need]
	}
	return out
}

func commonPrefix(a, b []byte) int {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return n
}
