package mir

// SimplifyCFG performs control flow graph simplification on a function.
// Transformations:
// 1. Redirect jumps through blocks that only goto elsewhere
// 2. Collapse goto chains (cycles of trivial gotos are kept)
// 3. Remove unreachable blocks
// 4. Renumber blocks deterministically
func SimplifyCFG(f *Func) {
	if f == nil || len(f.Blocks) == 0 {
		return
	}
	redirects := buildRedirectMap(f)
	applyRedirects(f, redirects)
	reachable := computeReachability(f)
	compactBlocks(f, reachable)
}

// buildRedirectMap maps every trivial goto block to the first
// non-trivial block its chain reaches.
func buildRedirectMap(f *Func) map[BlockID]BlockID {
	redirects := make(map[BlockID]BlockID)
	for i := range f.Blocks {
		bb := &f.Blocks[i]
		if !bb.IsTrivialGoto() {
			continue
		}
		target := bb.Term.Goto.Target
		visited := map[BlockID]bool{bb.ID: true}
		for !visited[target] {
			visited[target] = true
			if next, ok := redirects[target]; ok {
				target = next
				continue
			}
			if isTrivialGotoBlock(f, target) {
				target = f.Blocks[target].Term.Goto.Target
				continue
			}
			break
		}
		if target == bb.ID {
			// a loop made of trivial gotos has no exit to redirect to
			continue
		}
		redirects[bb.ID] = target
	}
	return redirects
}

func isTrivialGotoBlock(f *Func, id BlockID) bool {
	if id < 0 || int(id) >= len(f.Blocks) {
		return false
	}
	return f.Blocks[id].IsTrivialGoto()
}

func applyRedirects(f *Func, redirects map[BlockID]BlockID) {
	if len(redirects) == 0 {
		return
	}
	redirect := func(id BlockID) BlockID {
		if newID, ok := redirects[id]; ok {
			return newID
		}
		return id
	}
	for i := range f.Blocks {
		f.Blocks[i].Term.MapTargets(redirect)
	}
	f.Entry = redirect(f.Entry)
}

// computeReachability walks the graph from the entry block.
func computeReachability(f *Func) []bool {
	reachable := make([]bool, len(f.Blocks))
	stack := []BlockID{f.Entry}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id < 0 || int(id) >= len(f.Blocks) || reachable[id] {
			continue
		}
		reachable[id] = true
		stack = append(stack, f.Blocks[id].Term.Successors()...)
	}
	return reachable
}

// compactBlocks removes unreachable blocks and renumbers the remaining ones.
func compactBlocks(f *Func, reachable []bool) {
	count := 0
	for _, r := range reachable {
		if r {
			count++
		}
	}
	if count == len(f.Blocks) {
		for i := range f.Blocks {
			f.Blocks[i].ID = BlockID(i) //nolint:gosec // G115: bounded by existing block count
		}
		return
	}

	oldToNew := make(map[BlockID]BlockID, count)
	newBlocks := make([]Block, 0, count)
	for i, keep := range reachable {
		if keep {
			//nolint:gosec // G115: bounded by existing block count
			oldToNew[BlockID(i)] = BlockID(len(newBlocks))
			newBlocks = append(newBlocks, f.Blocks[i])
		}
	}
	remap := func(id BlockID) BlockID {
		if newID, ok := oldToNew[id]; ok {
			return newID
		}
		return id
	}
	for i := range newBlocks {
		newBlocks[i].ID = BlockID(i) //nolint:gosec // G115: bounded by newBlocks length
		newBlocks[i].Term.MapTargets(remap)
	}
	f.Blocks = newBlocks
	f.Entry = remap(f.Entry)
}
