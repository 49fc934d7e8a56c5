package service

import "dayonme/internal/services/feed/domain"

// Thread nests a flat comment list under parent ids, keeping server order among siblings
// A parent that is missing, the comment itself or part of a cycle leaves the comment top level
// with its ParentCommentID cleared
func Thread(flat []domain.CommentRecord) []domain.CommentRecord {
	n := len(flat)
	idx := make(map[int64]int, n)
	for i, c := range flat {
		if _, dup := idx[c.CommentID]; !dup {
			idx[c.CommentID] = i
		}
	}

	parent := make([]int, n)
	for i, c := range flat {
		parent[i] = -1
		if c.ParentCommentID == nil {
			continue
		}
		if j, ok := idx[*c.ParentCommentID]; ok && j != i {
			parent[i] = j
		}
	}
	for i := range flat {
		for j, steps := parent[i], 0; j >= 0 && steps < n; j, steps = parent[j], steps+1 {
			if j == i {
				parent[i] = -1
				break
			}
		}
	}

	children := make([][]int, n)
	roots := make([]int, 0, n)
	for i := range flat {
		if p := parent[i]; p >= 0 {
			children[p] = append(children[p], i)
			continue
		}
		roots = append(roots, i)
	}

	var build func(i int) domain.CommentRecord
	build = func(i int) domain.CommentRecord {
		c := flat[i]
		c.Replies = nil
		if parent[i] < 0 {
			c.ParentCommentID = nil
		}
		for _, k := range children[i] {
			c.Replies = append(c.Replies, build(k))
		}
		return c
	}
	out := make([]domain.CommentRecord, 0, len(roots))
	for _, r := range roots {
		out = append(out, build(r))
	}
	return out
}

// attach places c under its parent when the parent is in the tree, else at the top level
func attach(tree []domain.CommentRecord, c domain.CommentRecord) []domain.CommentRecord {
	if c.ParentCommentID != nil {
		if attachUnder(tree, *c.ParentCommentID, c) {
			return tree
		}
		c.ParentCommentID = nil
	}
	return append(tree, c)
}

func attachUnder(tree []domain.CommentRecord, parentID int64, c domain.CommentRecord) bool {
	for i := range tree {
		if tree[i].CommentID == parentID {
			tree[i].Replies = append(tree[i].Replies, c)
			return true
		}
		if attachUnder(tree[i].Replies, parentID, c) {
			return true
		}
	}
	return false
}
