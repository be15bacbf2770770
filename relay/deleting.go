package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/OpenAgentsInc/pylon"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNothingToDelete = errors.New("blocked: nothing to delete")
	ErrNotAuthor       = errors.New("blocked: you are not the author of this event")
)

// event deletion -- nip09
func (rl *Relay) handleDeleteRequest(ctx context.Context, evt nostr.Event) error {
	if nil == rl.QueryStored || nil == rl.DeleteEvent {
		// if we don't have a way to query or to delete that means we won't delete anything
		return ErrNothingToDelete
	}

	haveDeletedSomething := false
	for _, tag := range evt.Tags {
		if len(tag) >= 2 {
			var f nostr.Filter

			switch tag[0] {
			case "e":
				if !nostr.IsValid32ByteHex(tag[1]) {
					return fmt.Errorf("invalid 'e' tag '%s'", tag[1])
				}
				f = nostr.Filter{IDs: []string{tag[1]}}
			case "a":
				spl := strings.SplitN(tag[1], ":", 3)
				if len(spl) != 3 {
					continue
				}
				kind, err := strconv.Atoi(spl[0])
				if err != nil {
					continue
				}
				if !nostr.IsValid32ByteHex(spl[1]) {
					continue
				}

				identifier := spl[2]
				f = nostr.Filter{
					Kinds:   []nostr.Kind{nostr.Kind(kind)},
					Authors: []string{spl[1]},
					Tags:    nostr.TagMap{"d": []string{identifier}},
					Until:   evt.CreatedAt,
				}
			default:
				continue
			}

			ctx := context.WithValue(ctx, internalCallKey, struct{}{})

			targets, err := rl.QueryStored(ctx, f)
			if err != nil {
				return err
			}

			errg, ctx := errgroup.WithContext(ctx)
			for target := range targets {
				// got the event, now check if the user can delete it
				if target.PubKey == evt.PubKey {
					// delete it
					errg.Go(func() error {
						if err := rl.DeleteEvent(ctx, target.ID); err != nil {
							return err
						}

						// if it was tracked to be expired that is not needed anymore
						if rl.expirationManager != nil {
							rl.expirationManager.removeEvent(target.ID)
						}

						haveDeletedSomething = true
						return nil
					})
				} else {
					// fail and stop here
					return ErrNotAuthor
				}

				// don't try to query this same event again
				break
			}

			if err := errg.Wait(); err != nil {
				return err
			}
		}
	}

	if haveDeletedSomething {
		return nil
	}

	return ErrNothingToDelete
}
