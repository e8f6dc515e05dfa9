package logger

var NewWithWriter = newWithWriter
