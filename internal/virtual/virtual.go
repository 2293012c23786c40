// Package virtual computes which slice of a long list is visible inside a
// viewport, so rendering cost stays proportional to the viewport rather than
// the list. Heights are measured in terminal rows with a fixed per-item
// estimate; expanded cards may render taller than the estimate, which makes
// the scroll math nominal rather than exact.
package virtual

// Range is a half-open index interval [Start, End) into the item list.
type Range struct {
	Start int
	End   int
}

// Len returns the number of items in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// VisibleRange returns the slice of items overlapping the viewport, widened
// by buffer items on each side. The result always satisfies
// 0 <= Start <= End <= itemCount; an empty list or non-positive itemHeight
// yields the empty range at zero.
func VisibleRange(itemCount, itemHeight, scrollOffset, viewportHeight, buffer int) Range {
	if itemCount <= 0 || itemHeight <= 0 {
		return Range{}
	}
	if scrollOffset < 0 {
		scrollOffset = 0
	}
	if viewportHeight < 0 {
		viewportHeight = 0
	}
	if buffer < 0 {
		buffer = 0
	}

	start := scrollOffset/itemHeight - buffer
	if start < 0 {
		start = 0
	}

	// ceil((scrollOffset+viewportHeight)/itemHeight)
	end := (scrollOffset+viewportHeight+itemHeight-1)/itemHeight + buffer
	if end > itemCount {
		end = itemCount
	}
	if start > end {
		start = end
	}

	return Range{Start: start, End: end}
}

// Offset returns the height of the items above the range, i.e. how far down
// the rendered slice must be placed to line up with its scroll position.
func Offset(r Range, itemHeight int) int {
	if itemHeight <= 0 || r.Start <= 0 {
		return 0
	}
	return r.Start * itemHeight
}

// TotalHeight returns the nominal height of the whole list. It preserves
// correct scrollbar proportion even though only a slice is rendered.
func TotalHeight(itemCount, itemHeight int) int {
	if itemCount <= 0 || itemHeight <= 0 {
		return 0
	}
	return itemCount * itemHeight
}

// MaxScroll returns the largest useful scroll offset for the list: scrolling
// past it would show only blank space below the last item.
func MaxScroll(itemCount, itemHeight, viewportHeight int) int {
	max := TotalHeight(itemCount, itemHeight) - viewportHeight
	if max < 0 {
		return 0
	}
	return max
}
