// Package scene applies and learns scene states.
//
// A scene is an item of type scene with a file <scenes_dir>/<path>.yaml:
//
//	0:
//	  name: Off
//	  actions:
//	    - {item: living.light, value: false}
//	    - {item: living.dimmer, value: 0}
//	1:
//	  name: Evening
//	  actions:
//	    - {item: living.light, value: true}
//	    - {item: living.dimmer, value: 40, learn: true}
//
// Setting the scene item to 0..63 applies that state: each action changes
// its item with caller Scene and the scene's path as source. Setting it to
// 128..191 learns state value&127 instead: the current values of learn
// actions are stored and written to <path>_learned.yaml, and later applies
// use them.
package scene
