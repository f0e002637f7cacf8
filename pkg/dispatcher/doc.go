// See dispatcher.go for the full contract. In short: every object in this
// process is "home" to exactly one Dispatcher, and the only way another
// thread may touch that object is by posting a closure onto its home
// dispatcher. There is no other form of cross-thread mutation anywhere in
// this codebase.
package dispatcher
