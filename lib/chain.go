package xbprep

// Create the chain of backups needed to restore target: the full backup it is based on,
// then every increment up to and including target, in apply order.
//
// The chain is built backwards: the predecessor of a backup is the unique backup whose ToLSN
// equals its FromLSN. A missing predecessor is a *ChainBrokenError. Several predecessors, or
// another increment forking from the same LSN as one of the chain increments, is an
// *AmbiguousChainError: the catalog no longer describes a linear history and we do not guess.
func ResolveChain(target Backup, incrementals, fulls []Backup) (Chain, error) {
	if target.IsFull() {
		return Chain{target}, nil
	}

	inChain := map[string]struct{}{target.key(): {}}
	chain := Chain{target}
	current := target
	for {
		switch current.Kind {
		case KindFull:
			reverse(chain)
			return chain, nil
		case KindIncremental:
		default:
			return nil, &BackupNotFoundError{Dir: current.Path, Reason: "unknown backup kind " + current.Kind.String()}
		}

		if siblings := forks(current, incrementals, inChain); len(siblings) > 0 {
			return nil, &AmbiguousChainError{Backup: current, LSN: current.FromLSN, Candidates: append([]Backup{current}, siblings...)}
		}

		var candidates []Backup
		for _, list := range [][]Backup{incrementals, fulls} {
			for _, b := range list {
				if _, ok := inChain[b.key()]; ok {
					continue
				}
				if b.ToLSN == current.FromLSN {
					candidates = append(candidates, b)
				}
			}
		}

		switch len(candidates) {
		case 0:
			return nil, &ChainBrokenError{Backup: current, WantLSN: current.FromLSN}
		case 1:
		default:
			return nil, &AmbiguousChainError{Backup: current, LSN: current.FromLSN, Candidates: candidates}
		}

		current = candidates[0]
		inChain[current.key()] = struct{}{}
		chain = append(chain, current)
	}
}

// Other increments starting at the same LSN as b
func forks(b Backup, incrementals []Backup, exclude map[string]struct{}) []Backup {
	var res []Backup
	for _, other := range incrementals {
		if _, ok := exclude[other.key()]; ok {
			continue
		}
		if other.FromLSN == b.FromLSN {
			res = append(res, other)
		}
	}
	return res
}

func reverse(chain Chain) {
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
}
