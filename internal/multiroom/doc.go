// Package multiroom derives group topology and resolves grouped media
// state for LinkPlay-class devices.
//
// DetectRole is a pure function over one cycle's poll results, applying a
// strict evidence precedence (slave listing, then device-info master
// identity, then follower transport mode). Resolver consumes the fleet's
// published snapshots to replace a master's generic multiroom source with
// a concrete one and to mirror a master's media onto its slaves while
// preserving each slave's own volume and mute.
package multiroom
