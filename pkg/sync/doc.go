// Package sync keeps a user's local store coherent with the authoritative
// store for the items they subscribe to, and manages the local sandbox
// ("Offline Storage") where a user may work while disconnected.
//
// Engine drives three flows against the same Store interface on both
// sides: an initial full-subtree snapshot pull on first subscribe, a
// periodic/event-driven delta pull keyed on each row's Version, and an
// explicit push that promotes an offline file into the authoritative
// tree. The authoritative store always wins on structure; the local
// store wins on row edits made offline until the user promotes them.
package sync
