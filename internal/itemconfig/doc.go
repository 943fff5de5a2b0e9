// Package itemconfig reads item tree definitions from YAML.
//
// A tree file is a nested mapping. Every key whose value is a mapping
// becomes a child item; every other key is an attribute of the enclosing
// item. The "value" attribute is always an attribute, so dict items can
// carry a mapping as their initial value:
//
//	living:
//	  light:
//	    type: bool
//	    cache: true
//	    autotimer: 10m = false
//	    mqtt: true
//	  temp:
//	    type: num
//	    eval: avg
//	    eval_trigger: [living.sensor_*]
//	  state:
//	    type: dict
//	    value: {mode: auto}
//
// Load accepts a single file or a directory; every *.yaml and *.yml file
// in a directory is read in name order and their roots are concatenated.
package itemconfig
