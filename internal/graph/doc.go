// Package graph writes and reads the crawl event log.
//
// The log is newline-delimited JSON. Every line is an array whose first
// element names the record kind and whose second element is a Unix
// timestamp in milliseconds:
//
//	["node",ts,version,name]
//	["link",ts,label,parentKey,childKey,formNum]
//	["hzn",ts,childKey,childPath,viaLabel]
//	["fail",ts,target]
//	["info",ts,queueSize,outstanding,sessionID]
//
// Node records are written once per public key and link records once per
// (child, parent, label) tuple, no matter how many times the crawl reports
// them. A log whose file name ends in ".zst" is zstd compressed.
package graph
