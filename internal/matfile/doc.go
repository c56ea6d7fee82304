// Package matfile reads processed session files saved by MATLAB in the v7.3
// format, which is HDF5 with a MATLAB user block. Numeric variables are
// widened to float64 whatever their stored class; integer classes keep
// their signedness. Char arrays are decoded from UTF-16. The 3-D template array is
// reordered from MATLAB's column-major layout into template x sample x
// channel.
package matfile
