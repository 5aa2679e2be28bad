// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package coordinator is the Room Coordinator. It exposes one method per client
request and turns each into a Room Store transaction, Session Registry and
game.Machine updates, and broadcasts through a Notifier.

Every method returns the reply envelope ({success, error?, ...}); nothing
panics or returns a bare error past this package. Failures that are safe to
show the requester are *Error values; anything else is logged and reported
as "Internal server error".

# Serialization

Each room code maps to a roomState guarded by its own mutex. Requests,
timer callbacks and reaper sweeps for one room run one at a time, so
broadcasts for a room go out in the order their operations complete.
Question generation is the one slow step run without the lock: the start is
claimed first, and the generated round is applied only if the claim is
still held when generation returns.

# Host policy

A host who disconnects has HostGracePeriod to reconnect. After that the
longest-connected remaining player is promoted and host-changed is
broadcast. A host who sends leave-room closes the room for everyone.
*/
package coordinator
